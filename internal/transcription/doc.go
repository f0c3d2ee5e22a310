// Package transcription turns an extracted audio file into timed transcript
// segments.
//
// Backends implement one interface and are created by name through a
// Registry, so the orchestrator never branches on backend type. Three
// backends ship: whisperx (uvx-managed WhisperX CLI), whispercpp (the
// whisper.cpp CLI), and openai (any OpenAI-compatible transcription
// endpoint). A second backend is only consulted when the caller wraps the
// primary with WithFallback.
package transcription
