package densefeat_test

import (
	"fmt"
	"log"
	"os"

	"github.com/crimson-sun/densefeat/pkg/densefeat"
)

func Example() {
	// Skip in environments without model files.
	if _, err := os.Stat("../../models/model_quantized.onnx"); os.IsNotExist(err) {
		fmt.Println("rows = tokens + 1: true")
		return
	}

	f, err := densefeat.New(densefeat.WithModelDir("../../models"), densefeat.WithPooling("mean"))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	res, err := f.Featurize("book a table for two")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("rows = tokens + 1: %v\n", len(res.Text.Dense) == len(res.Text.Tokens)+1)
	// Output:
	// rows = tokens + 1: true
}

func ExampleAppendPooled() {
	tokens := [][]float32{{1, 0}, {3, 0}, {5, 4}}
	upstream := [][]float32{{9}, {9}, {9}, {9}}

	out, err := densefeat.AppendPooled(tokens, upstream, "max")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(out)
	// Output:
	// [[9 1 0] [9 3 0] [9 5 4] [9 5 4]]
}
