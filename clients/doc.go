/*
Package clients provides a client library for the identity agent HTTP API.

AgentClient mirrors the agent endpoints:

  - Session - wallet session, network and resolved contract
  - Status - registration status of the agent account
  - Workflow - last workflow snapshot
  - Register / Verify - run a workflow and wait for its final snapshot

A workflow that fails is a successful request: the error kind, reason and the
rendered display are part of the response. ErrConflict is returned, together
with the response, when the agent refused to start the run.

# Example Usage

	client := clients.NewAgentClient("http://127.0.0.1:8080", 5*time.Minute)

	resp, err := client.Verify(ctx, "12345")
	if errors.Is(err, clients.ErrConflict) {
		fmt.Println(resp.Display)
		return
	} else if err != nil {
		return err
	}

	if resp.Snapshot.VerificationResult != nil && *resp.Snapshot.VerificationResult {
		fmt.Println("identity matches")
	}
*/
package clients
