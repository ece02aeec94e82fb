/*
Package coprocessor is an in-process stand-in for the FHE network behind an
encrypted-types chain.

It encrypts user inputs with binary TFHE, issues input proofs binding handles
to a contract and a user, evaluates encrypted equality, keeps an access list
per handle and re-encrypts plaintexts for users holding a valid EIP-712
decryption authorization.

Ciphertext handles are 32 bytes: a blake3 digest prefix followed by the input
index, the encrypted type and a version byte.

	engine := coprocessor.NewLazyEngine(func() (coprocessor.Engine, error) {
		return coprocessor.NewTFHEEngine()
	}, log)
	engine.Start(ctx)

	cp, err := coprocessor.New(engine, interfaces.HardhatChainID, coprocessor.Options{})
*/
package coprocessor
