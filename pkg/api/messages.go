package api

import "fmt"

type (
	// Member is a room participant as seen by others.
	Member struct {
		Id   string `json:"id"`
		Name string `json:"name"`
	}

	JoinRoomRequest struct {
		Name string `json:"name"`
		Room string `json:"room"`
	}
	// RoomJoinedResponse is sent back to the joiner with its
	// coordinator-assigned id and the pre-join room snapshot.
	RoomJoinedResponse struct {
		Id     string   `json:"id"`
		Room   string   `json:"room"`
		Others []Member `json:"others"`
		Error  string   `json:"error,omitempty"`
	}
	UserJoinedNotice Member
	UserLeftNotice   Member

	// Negotiation requests carry a client-chosen target;
	// the relayed forms carry the coordinator-stamped source.
	OfferRequest struct {
		Target string `json:"target"`
		Sdp    string `json:"sdp"`
	}
	OfferRelay struct {
		Source string `json:"source"`
		Sdp    string `json:"sdp"`
		Name   string `json:"name"`
	}
	AnswerRequest struct {
		Target string `json:"target"`
		Sdp    string `json:"sdp"`
	}
	AnswerRelay struct {
		Source string `json:"source"`
		Sdp    string `json:"sdp"`
	}
	IceRequest struct {
		Target    string `json:"target"`
		Candidate string `json:"candidate"`
	}
	IceRelay struct {
		Source    string `json:"source"`
		Candidate string `json:"candidate"`
	}

	ChatMessageRequest struct {
		Message string `json:"message"`
	}
	NewMessageNotice struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	FileShareRequest struct {
		File     []byte `json:"file"`
		Filename string `json:"filename"`
		Filetype string `json:"filetype"`
	}
	NewFileNotice struct {
		Name     string `json:"name"`
		File     []byte `json:"file"`
		Filename string `json:"filename"`
		Filetype string `json:"filetype"`
	}
)

var (
	ErrMalformed = fmt.Errorf("malformed")
	ErrNoRoom    = fmt.Errorf("not in a room")
)

func (r JoinRoomRequest) Validate() error {
	if r.Name == "" || r.Room == "" {
		return ErrMalformed
	}
	return nil
}
