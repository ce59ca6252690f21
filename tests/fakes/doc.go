// Package fakes provides test doubles for the AWS service interfaces used by
// envmanage.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior: in-memory state, page sizes, recorded calls and
// per-operation func hooks that override the default behavior.
//
// Usage:
//
//	ssmFake := fakes.NewFakeSSMClient()
//	ssmFake.AddSecureStringParameter("/shop/dev/db_password", "hunter2")
//	client, _ := awsenv.New(ctx, scope.New("shop", "dev"), awsenv.Settings{},
//	    awsenv.WithSSMClient(ssmFake), ...)
package fakes
