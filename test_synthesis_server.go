package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
)

// Standalone fake voice service for local development: answers every
// synthesis request with a short tone whose length tracks the text, in
// the same WAV layout the real service uses.

const (
	fakeSampleRate = 24000
	secondsPerWord = 0.35
)

type synthesisRequest struct {
	Text      string `json:"text"`
	Voice     string `json:"voice"`
	RequestID string `json:"request_id"`
}

func synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req synthesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Text is required", http.StatusBadRequest)
		return
	}

	words := len(strings.Fields(req.Text))
	if words == 0 {
		words = 1
	}
	frames := int(float64(words) * secondsPerWord * fakeSampleRate)

	// A different pitch per voice keeps speakers distinguishable.
	freq := 220.0
	for _, c := range req.Voice {
		freq += float64(c % 7)
	}

	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/fakeSampleRate))
	}

	var buf bytes.Buffer
	dataSize := uint32(len(samples) * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(fakeSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(fakeSampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	binary.Write(&buf, binary.LittleEndian, samples)

	log.Printf("Synthesized %d words as %.2fs tone (voice=%s request=%s)",
		words, float64(frames)/fakeSampleRate, req.Voice, req.RequestID)

	w.Header().Set("Content-Type", "audio/wav")
	w.Write(buf.Bytes())
}

func main() {
	http.HandleFunc("/v1/synthesize", synthesizeHandler)

	addr := ":9990"
	fmt.Printf("Fake synthesis server listening on %s\n", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
