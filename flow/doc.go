// Package flow drives an event-driven graph of named stages. A stage with
// no predecessors starts as soon as the flow kicks off; every other stage
// declares which stages it listens to and whether it activates when all of
// them are done (AND) or when the first one is (OR). Each stage's output is
// written exactly once into the flow state and delivered as the input of
// every downstream listener.
//
// The graph is validated at build time: cycles, unknown predecessors, and
// duplicate stage names are configuration errors, never runtime surprises.
package flow
