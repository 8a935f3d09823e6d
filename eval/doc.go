/*
	The `eval` package is the evaluation core: lazy values, the string
	context that tracks which store paths a string was built from, the
	builtin functions, and the machinery that turns an attribute set into a
	derivation written to the store.

	Shortlist:

		- `Value`s are slots.  A slot starts out as a thunk (an expression
		  plus the environment to evaluate it in, or a lazy function
		  application) and is overwritten in place with its result the first
		  time it is forced.  Lists and attribute sets hold slots, so
		  forcing an element through any alias is seen through every alias.

		- Strings carry a `Context`: the set of store paths (`PathRef`s)
		  that went into making them.  Contexts only ever grow by union, and
		  are how derivations find out what they depend on.

		- A `State` is one evaluation session.  It owns the base environment
		  of builtins, and the session caches: evaluated files, sources
		  already copied to the store, and derivation hashes.  A State is
		  not safe for concurrent use; run one per goroutine.

	Expressions themselves come from a `Parser`; this package only needs
	them to implement `Expr`.  A handful of basic expression nodes are
	provided here for parsers to build on.
*/
package eval
