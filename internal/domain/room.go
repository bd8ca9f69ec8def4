package domain

// Room is one conversation the current user participates in, annotated with
// its most recent message and paging cursor (total chunk count).
type Room struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         RoomType   `json:"type"`
	Participants []ChatUser `json:"participants"`

	// LastMessage and ChunkCount are enrichment fetched per room after the
	// room list itself loads. Degraded marks a room whose enrichment failed;
	// the room stays listed but LastMessage is zero-valued.
	LastMessage Message `json:"-"`
	ChunkCount  int     `json:"-"`
	Degraded    bool    `json:"-"`
}

// RoomDisplay is the resolved presentation of a room for one viewer.
type RoomDisplay struct {
	Name       string
	Fallback   string
	AvatarUser int64 // participant whose profile picture to show, 0 if none
}

// Display resolves how a room is shown to the given viewer. Private rooms are
// named after the other participant, group rooms after the room itself.
func (r Room) Display(viewerID int64) RoomDisplay {
	if r.Type == RoomTypePrivate {
		for _, p := range r.Participants {
			if p.ID == viewerID {
				continue
			}
			d := RoomDisplay{Name: p.DisplayName(), Fallback: initial(p.FirstName)}
			if p.HasProfilePicture {
				d.AvatarUser = p.ID
			}
			return d
		}
		return RoomDisplay{Name: "Unknown", Fallback: "U"}
	}
	return RoomDisplay{Name: r.Name, Fallback: initial(r.Name)}
}

func initial(s string) string {
	if s == "" {
		return "U"
	}
	return string([]rune(s)[0])
}
