// Package compiler compiles JSON:API style query parameters into a
// queryspec.QuerySpec.
//
// Example:
//
//	params, _ := input.ParseQuery("filter[users][age]=>18&include=posts&sort=-createdAt")
//	spec, err := compiler.New(cfg).Compile(ctx, params, "users")
//
// Each Compile call is an independent pass: filters are normalized per
// resource, the default resource's predicate is assembled, every include
// path is merged into one forest with its relation's predicate and
// projection attached, and OR-routed conditions from all visited resources
// collect into one disjunction on the root predicate.
//
// Input errors all match queryspec.ErrInvalidQuery and carry a
// queryspec.ErrorCode.
package compiler
