package monitor

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// statApplication mirrors the parts of an nginx-rtmp stat application the
// monitor reads:
//
//	<rtmp><server><application>
//	  <name>club</name>
//	  <live><stream>...<nclients>1</nclients></stream><nclients>1</nclients></live>
//	</application></server></rtmp>
//
// Counts are kept as strings so a non-numeric value degrades to zero
// instead of failing the whole decode.
type statApplication struct {
	Name string   `xml:"name"`
	Live statLive `xml:"live"`
}

type statLive struct {
	NClients string       `xml:"nclients"`
	Streams  []statStream `xml:"stream"`
}

type statStream struct {
	Name     string `xml:"name"`
	NClients string `xml:"nclients"`
}

// ParseStats returns the client count of the first application named app.
// The application-wide live count is preferred; if it is absent the first
// stream's count is used. A missing application or count yields 0.
//
// Applications are decoded one at a time as the document streams in, so a
// match is reported even if the document breaks further on.
func ParseStats(r io.Reader, app string) (int, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, errors.Wrap(err, "decode rtmp stat")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "application" {
			continue
		}
		var a statApplication
		if err := dec.DecodeElement(&a, &se); err != nil {
			return 0, errors.Wrap(err, "decode rtmp stat application")
		}
		if strings.TrimSpace(a.Name) != app {
			continue
		}
		return a.clients(), nil
	}
}

func (a statApplication) clients() int {
	if n, ok := parseCount(a.Live.NClients); ok {
		return n
	}
	for _, s := range a.Live.Streams {
		if n, ok := parseCount(s.NClients); ok {
			return n
		}
	}
	return 0
}

func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
