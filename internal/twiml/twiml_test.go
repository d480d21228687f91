package twiml

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// topLevel returns the element names directly under <Response>, in order.
func topLevel(t *testing.T, doc string) []string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	var names []string
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				names = append(names, el.Name.Local)
			}
		case xml.EndElement:
			depth--
		}
	}
	return names
}

func TestResponseOrderAndAttributes(t *testing.T) {
	doc := NewResponse(WithLanguage("ja-JP")).
		Gather(GatherConfig{NumDigits: 1, Timeout: 5, Action: "https://x.test/menu", Prompt: "メニュー"}).
		Redirect("https://x.test/record").
		String()

	require.True(t, strings.HasPrefix(doc, xml.Header))
	require.Equal(t, []string{"Gather", "Redirect"}, topLevel(t, doc))
	require.Contains(t, doc, `numDigits="1"`)
	require.Contains(t, doc, `timeout="5"`)
	require.Contains(t, doc, `action="https://x.test/menu"`)
	require.Contains(t, doc, `<Say language="ja-JP">メニュー</Say>`)
	require.Contains(t, doc, `<Redirect method="POST">https://x.test/record</Redirect>`)
}

func TestRecordAttributes(t *testing.T) {
	doc := NewResponse(WithLanguage("ja-JP"), WithVoice("Polly.Mizuki")).
		Say("どうぞ").
		Record(RecordConfig{Action: "https://x.test/transcribe", MaxLength: 90, PlayBeep: true}).
		String()

	require.Equal(t, []string{"Say", "Record"}, topLevel(t, doc))
	require.Contains(t, doc, `voice="Polly.Mizuki"`)
	require.Contains(t, doc, `maxLength="90"`)
	require.Contains(t, doc, `playBeep="true"`)
	require.Contains(t, doc, `transcribe="false"`)
	require.Contains(t, doc, `action="https://x.test/transcribe"`)
}

func TestDialAndEscaping(t *testing.T) {
	r := NewResponse().Say("a < b & c").Dial("+15550100")
	doc := r.String()

	require.Equal(t, 2, r.Len())
	require.Contains(t, doc, "a &lt; b &amp; c")
	require.Contains(t, doc, "<Dial>+15550100</Dial>")

	var parsed struct {
		Say  string `xml:"Say"`
		Dial string `xml:"Dial"`
	}
	require.NoError(t, xml.Unmarshal([]byte(doc), &parsed))
	require.Equal(t, "a < b & c", parsed.Say)
}

func TestEmptyResponse(t *testing.T) {
	doc := NewResponse().String()
	require.Empty(t, topLevel(t, doc))
	require.Contains(t, doc, "<Response></Response>")
}
