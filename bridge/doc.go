// Package bridge connects a cycle-driven hardware simulator to a memory
// timing engine.
//
// A Bridge owns the two halves of an engine, a Frontend that admits requests
// and a MemorySystem that times them. The clock driver calls SendRequest to
// admit accesses and Tick once per simulated cycle. Every admitted request
// completes through its Completion exactly once; a rejected request never
// does, and its Completion is disposed before SendRequest returns.
//
//	b := bridge.MakeBuilder().Build("Bridge")
//	if err := b.Initialize(config.File("ddr4.yaml")); err != nil {
//		return err
//	}
//	ok, err := b.SendRequest(0x40, false, bridge.NewCompletion(
//		func(req mem.Request) { fmt.Println("done at", req.Depart) }))
//	...
//	for i := 0; i < cycles; i++ {
//		b.Tick()
//	}
//	report, err := b.Finalize()
//	b.Destroy()
//
// A Bridge is not safe for concurrent use. All calls must come from the
// goroutine that drives the clock.
package bridge
