// Package vecrank embeds the vecrank re-ranking pipeline in a Go program.
//
// The client embeds a query, fetches the nearest candidates from a vector
// index, re-embeds every candidate and returns the one with the highest
// cosine similarity to the query.
//
//	client, _ := vecrank.New(ctx,
//	    vecrank.WithWeaviate("http://localhost:8080", ""),
//	    vecrank.WithCollection("Document"),
//	    vecrank.WithGemini(os.Getenv("GEMINI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	best, _ := client.BestSimilarity(ctx, "how do I reset my password", 5)
//	fmt.Println(best.ID, best.Similarity)
//
// Any type implementing Embedder can replace the built-in providers via
// WithEmbedder.
package vecrank
