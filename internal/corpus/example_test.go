package corpus_test

import (
	"fmt"

	"eventflood/internal/corpus"
)

func ExampleBuild() {
	c, err := corpus.Build(4, []int{4, 5}, []string{"A", "B", "C"}, corpus.WithSeed(1))
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, e := range c.Events {
		fmt.Printf("%d %s\n", e.ID, e.Author)
	}
	// Output:
	// 4 A
	// 5 B
	// 4 C
	// 5 A
}
