// Package equidex embeds the equidex analysis pipeline in a Go program.
//
// The caller supplies the embedding and generation providers; the client
// ingests documents into an in-memory corpus, retrieves context per agent
// and runs the agent panel concurrently.
//
//	client, _ := equidex.New(ctx,
//	    equidex.WithEmbedder(myEmbedder),
//	    equidex.WithGenerator(myGenerator),
//	    equidex.WithConcurrency(4),
//	)
//	defer client.Close()
//
//	res, _ := client.Analyze(ctx, equidex.AnalyzeRequest{
//	    Company:   "ACME",
//	    Set:       equidex.SetPrimary,
//	    Documents: docs,
//	})
//	for _, r := range res.Run.Results {
//	    fmt.Println(r.AgentName, r.Present())
//	}
//
// A failed agent never aborts the run: its slot carries an absence marker
// and the remaining results are returned in catalog order.
package equidex
