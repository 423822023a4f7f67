// Package embedder generates vector embeddings for regulatory comment text.
//
// Three providers are supported: Cloudflare Workers AI (bge-base-en-v1.5,
// 768 dimensions), OpenAI (text-embedding-3-small, 1536 dimensions), and a
// deterministic local provider (384 dimensions) for offline development and
// tests. Provider selection is environment-driven:
//
//  1. If REGSEARCH_EMBEDDING_PROVIDER is set → use the named provider
//  2. Else if CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_API_TOKEN are set → Workers AI
//  3. Else if OPENAI_API_KEY is set → OpenAI
//  4. Else → local provider (offline mode)
//
// Network providers batch requests, retry with exponential backoff, and
// cache results in an in-memory LRU keyed by content hash. Failures after
// retry surface as ErrUnavailable; callers decide whether that is fatal.
package embedder
