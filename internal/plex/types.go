package plex

import "encoding/xml"

// mediaContainer is the envelope every Plex XML response arrives in. Library
// sections and collections both come back as Directory elements; movies and
// episodes as Video.
type mediaContainer struct {
	XMLName           xml.Name `xml:"MediaContainer"`
	Size              int      `xml:"size,attr"`
	FriendlyName      string   `xml:"friendlyName,attr"`
	MachineIdentifier string   `xml:"machineIdentifier,attr"`
	Version           string   `xml:"version,attr"`

	Directories []directoryXML `xml:"Directory"`
	Videos      []videoXML     `xml:"Video"`
	Playlists   []playlistXML  `xml:"Playlist"`
}

type directoryXML struct {
	RatingKey string `xml:"ratingKey,attr"`
	Key       string `xml:"key,attr"`
	Title     string `xml:"title,attr"`
	Type      string `xml:"type,attr"`
}

type videoXML struct {
	RatingKey             string    `xml:"ratingKey,attr"`
	Title                 string    `xml:"title,attr"`
	Type                  string    `xml:"type,attr"`
	GrandparentTitle      string    `xml:"grandparentTitle,attr"`
	ParentIndex           int       `xml:"parentIndex,attr"`
	Index                 int       `xml:"index,attr"`
	Summary               string    `xml:"summary,attr"`
	Tagline               string    `xml:"tagline,attr"`
	ContentRating         string    `xml:"contentRating,attr"`
	OriginallyAvailableAt string    `xml:"originallyAvailableAt,attr"`
	TitleSort             string    `xml:"titleSort,attr"`
	Thumb                 string    `xml:"thumb,attr"`
	Art                   string    `xml:"art,attr"`
	LibrarySectionID      string    `xml:"librarySectionID,attr"`
	LibrarySectionTitle   string    `xml:"librarySectionTitle,attr"`
	Guids                 []guidXML `xml:"Guid"`
}

type guidXML struct {
	ID string `xml:"id,attr"`
}

type playlistXML struct {
	RatingKey    string `xml:"ratingKey,attr"`
	Title        string `xml:"title,attr"`
	PlaylistType string `xml:"playlistType,attr"`
	SmartRaw     int    `xml:"smart,attr"`
}

func (p playlistXML) smart() bool { return p.SmartRaw == 1 }
