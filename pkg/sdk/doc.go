// Package askdex embeds the audit findings query router in a Go program.
//
// A client classifies each free-text question and answers it either with a
// filtered lookup over the findings store or with model analysis over a
// ranked context window:
//
//	client, _ := askdex.New(
//	    askdex.WithSQLite("findings.db"),
//	    askdex.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	    askdex.WithDailyLimit(50),
//	)
//	defer client.Close()
//
//	resp, _ := client.Route(ctx, "recommend priorities for 2024 Hotel findings",
//	    askdex.ForUser("alice"))
//	fmt.Println(resp.Answer)
//
// Without a model the client still answers lookups; analytical questions are
// downgraded to records with a warning.
package askdex
