/*
	The `drv` package holds the definition of a Derivation -- the immutable
	build-step record the evaluator produces -- and its one canonical serial
	form.

	Shortlist:

		- `Derivation`s describe `builder(args, env) -> outputs`, along with
		  the store paths they consume:
		    - InputSrcs (plain store paths: sources, text files)
		    - InputDrvs (other derivations, and which of their outputs)

		- `Output`s name a store path; a fixed-output derivation also
		  declares the content hash of its single output up front.

		- The serial form is an ATerm-style term:

		    Derive([outputs],[inputDrvs],[inputSrcs],"system","builder",[args],[env])

		  Maps are written sorted by key and sequences in their own order,
		  so equal derivations always serialize (and therefore hash) the same.
*/
package drv
