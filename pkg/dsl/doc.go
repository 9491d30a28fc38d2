/*
Package dsl builds diagnostic trees in Go with a fluent builder instead of JSON or YAML.

	b := dsl.New("elbow").Title("Elbow pain")
	b.Add("q1").Question("Where does it hurt?").
		Option("Inside", "r_inner").
		Option("Outside", "r_outer")
	b.Add("r_inner").Result("Medial strain").
		Diagnosis("Flexor overload.").
		Recommend("Rest 7 days", "Eccentric curls")
	b.Add("r_outer").Result("Lateral strain").
		Diagnosis("Extensor overload.").
		Premium("Full rehab plan")

	tree, err := b.Build()

The first node added becomes the start node unless Start is called.
*/
package dsl
