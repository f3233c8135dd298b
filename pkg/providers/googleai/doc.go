// Package googleai implements the Gemini chat adapter over the REST API.
//
// Requests go to models/{model}:generateContent, and streams to
// models/{model}:streamGenerateContent?alt=sse. Assistant turns are sent
// with the "model" role and system messages become the systemInstruction.
//
// When StreamSimulation is enabled, ChatStream fetches the whole reply and
// replays it in ChunkSize-rune chunks separated by Delay. This keeps the
// streaming user experience on keys or models that cannot stream.
package googleai
