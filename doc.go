// Package refit finds source modernization opportunities across a
// multi-project source tree, such as method bodies that can become
// expression-bodied members or null checks that can use ??.
//
// # Pipeline
//
// A run has three steps:
//
//  1. Load: [workspace.Load] discovers compilation units (projects) and
//     their documents and returns an immutable snapshot.
//
//  2. Estimate: [Engine.MaxProgress] counts the documents that will be
//     analyzed, so a caller can size a progress bar before work starts.
//
//  3. Analyze: [Engine.Analyze] visits those documents one at a time. Each
//     document is parsed once into an immutable tree, and every registered
//     analyzer runs on that tree concurrently. Findings go into a shared
//     [ResultSet]; progress is reported after each document.
//
// # Usage
//
//	reg, err := refit.DefaultRegistry(logger)
//	if err != nil { ... }
//	e := refit.New(reg, refit.WithLanguage("csharp"))
//
//	sess, err := workspace.Load(ctx, "path/to/repo")
//	snap := sess.Snapshot()
//	total := e.MaxProgress(snap)
//	res, err := e.Analyze(ctx, snap, func(done int) {
//		fmt.Printf("\r%d/%d", done, total)
//	})
//
// # Filtering
//
// Units are kept when their language equals the engine's language. Documents
// are kept when they can be parsed and are not tool-generated (see
// [IsGenerated]). MaxProgress and Analyze share the same [Filter].
//
// # Analyzers
//
// The built-in analyzers are Go values in internal/rules. Additional rules
// are Risor scripts under scripts/rules, embedded in the binary and
// registered at startup by [DefaultRegistry]. The set is fixed for the
// lifetime of an Engine.
//
// # Failures
//
// By default the first analyzer failure aborts the run ([FailFast]). With
// [WithFailurePolicy]([ContinueOnFailure]) failures are recorded in
// [Result.Degraded] and the run goes on.
package refit
