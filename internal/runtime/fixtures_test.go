package runtime_test

import (
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/dsl"
)

// exampleTree: q1 -A-> r1, q1 -B-> q2 -C-> r1.
func exampleTree() *domain.Tree {
	b := dsl.New("example").Title("Example")
	b.Add("q1").Question("First?").
		Option("A", "r1").
		Option("B", "q2")
	b.Add("q2").Question("Second?").Option("C", "r1")
	b.Add("r1").Result("Result").Diagnosis("Diagnosis").Recommend("rest")
	return b.MustBuild()
}

func premiumTree() *domain.Tree {
	b := dsl.New("premium")
	b.Add("q1").Question("Go?").Option("yes", "r1")
	b.Add("r1").Result("Paid").
		Diagnosis("Deep").
		Recommend("one", "two").
		Premium("More inside")
	return b.MustBuild()
}
