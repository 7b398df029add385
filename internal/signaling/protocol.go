// Package signaling exchanges WebRTC offers, answers and ICE candidates with the viewer.
package signaling

import "github.com/pion/webrtc/v3"

// Message is a websocket signaling payload.
//
//   - offer/answer carry SDP
//   - ice carries a candidate
//   - content announces the captured frame size
//   - restart asks the viewer to renegotiate
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	W         int                      `json:"w,omitempty"`
	H         int                      `json:"h,omitempty"`
}
