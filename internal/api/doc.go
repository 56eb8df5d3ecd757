// Package api provides the HTTP surface of the Stayward console core.
//
// It exposes the credential exchange, session, module navigator, and
// back-office administration endpoints to the browser UI, and mounts the
// route guard in front of every protected screen route. The server follows
// the lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
