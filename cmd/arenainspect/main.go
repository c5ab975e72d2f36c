// Command arenainspect builds a small demonstration arena and prints
// per-class statistics plus each class's type descriptor, exercising
// typedesc.Deparse and the directory/page accounting the rest of the
// module only reports through plain Go values.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/sorear/compact/arena"
	"github.com/sorear/compact/class"
	"github.com/sorear/compact/typedesc"
)

func main() {
	logger := log.New(os.Stderr, "arenainspect: ", 0)

	objects := flag.Int("objects", 16, "number of demonstration objects to allocate")
	flag.Parse()

	a := arena.New(arena.Options{})

	point := typedesc.NewRecordType([]typedesc.Field{
		{Name: "x", Type: typedesc.NewIntType(32, true)},
		{Name: "y", Type: typedesc.NewIntType(32, true)},
	})
	cls := a.NewClass(point, point.InlineSize(), class.Manual, nil)

	for i := 0; i < *objects; i++ {
		if _, err := a.NewObject(cls); err != nil {
			logger.Fatalf("new_object: %v", err)
		}
	}

	os.Stdout.WriteString("class type: ")
	typedesc.Deparse(os.Stdout, cls.Type)
	os.Stdout.WriteString("\n")

	logger.Printf("objects: used=%d total=%d free=%d", cls.UsedObjects(), cls.TotalObjects(), cls.FreeObjects())
	logger.Printf("pages: bytes=%d created=%d free=%d", a.Pages().PageBytes(), a.Pages().Created(), a.Pages().Free())
	logger.Printf("classes registered: %d", len(a.Classes()))
}
