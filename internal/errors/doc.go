// Package errors provides coded, structured errors for the fiber reconciler
// and its tooling.
//
// Contract violations (codes F001-F019) signal a programming error in the
// caller or in a component: an invalid child, a hook called outside render,
// a re-entrant commit. The reconciler panics with a *FiberError for these
// and never routes them to error boundaries.
//
// # Usage
//
//	panic(errors.Violation("F001", "child of type %T", child))
//
//	errors.PrintError(err)
//	// ERROR F001: Objects are not valid as a child
//	//
//	//   child of type chan int
//	//
//	//   A child must be nil, a bool, a string, ...
package errors
