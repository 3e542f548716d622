// Package crew executes a static, dependency-ordered set of reasoning tasks
// for one input item. Tasks with no dependency relation run concurrently;
// a task only runs once every task named in its context list has produced
// output. The sink task's output can be bound to a schema, making the crew's
// result a validated structured record rather than free text.
//
// KickoffForEach applies one crew run per input item with bounded
// concurrency, collating results in input order regardless of completion
// order.
package crew
