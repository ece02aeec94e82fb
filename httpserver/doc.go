/*
Package httpserver implements the HTTP API of the identity agent.

The agent holds one wallet session and exposes the register and verify
workflows of the EncryptedIdentityAuth contract over JSON. Workflow runs are
synchronous: the response carries the final snapshot, the classified error and
a rendered display.

# API Endpoints

  - GET /api/v1/session - Connected account, network and resolved contract
  - GET /api/v1/status - Re-read the registration status of the account
  - GET /api/v1/workflow - Last workflow snapshot
  - POST /api/v1/register - Encrypt and register an identity
  - POST /api/v1/verify - Verify an identity against the registered one
  - GET /livez - Liveness check
  - GET /readyz - Readiness check, not ready while encryption is loading
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

Register and verify accept {"identity": "<decimal uint32>"}. A failed workflow
is still a 200 response with the error in the body. 409 is returned when the
request was inert: another workflow is in flight, or the account is already
registered.

# Example Usage

	cfg := &httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		MetricsAddr:              ":9090",
		Log:                      logger,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             5 * time.Minute,
	}

	handler := httpserver.NewHandler(controller, resolver, provider, httpserver.StaticSession{Signer: signer, ChainID: chainID}, logger)

	server, err := httpserver.New(cfg, handler, metricsSrv)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
