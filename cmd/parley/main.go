// Parley is a terminal chat client for hosted LLM providers.
//
// It talks to Google AI, DeepSeek and OpenAI behind one interface, fails
// over from the active provider to a fallback when the active one is rate
// limited, and can hold a reconnecting websocket to a realtime server.
//
// Usage:
//
//	# Start an interactive session
//	parley chat
//
//	# Ask a single question and stream the reply
//	parley chat --stream "What is a goroutine?"
//
//	# Show configured providers and check their health
//	parley providers --check
//
//	# Follow events from the realtime server
//	parley listen --url ws://localhost:3001/ws
//
//	# Validate a configuration file
//	parley validate --config parley.yaml
package main

func main() {
	Execute()
}
