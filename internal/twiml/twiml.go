// Package twiml renders the call-control markup returned to the telephony
// provider on every callback.
package twiml

import "encoding/xml"

// SayElement represents a TwiML <Say> element.
type SayElement struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// GatherElement represents a TwiML <Gather> element.
type GatherElement struct {
	XMLName   xml.Name    `xml:"Gather"`
	Input     string      `xml:"input,attr,omitempty"`
	NumDigits int         `xml:"numDigits,attr,omitempty"`
	Timeout   int         `xml:"timeout,attr,omitempty"`
	Action    string      `xml:"action,attr,omitempty"`
	Method    string      `xml:"method,attr,omitempty"`
	Say       *SayElement `xml:",omitempty"`
}

// RecordElement represents a TwiML <Record> element. Transcription on the
// provider side is always off.
type RecordElement struct {
	XMLName    xml.Name `xml:"Record"`
	Action     string   `xml:"action,attr,omitempty"`
	Method     string   `xml:"method,attr,omitempty"`
	MaxLength  int      `xml:"maxLength,attr,omitempty"`
	PlayBeep   bool     `xml:"playBeep,attr"`
	Transcribe bool     `xml:"transcribe,attr"`
}

// RedirectElement represents a TwiML <Redirect> element.
type RedirectElement struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// DialElement represents a TwiML <Dial> element.
type DialElement struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

// ResponseElement represents a TwiML <Response> element. Verbs keep the
// order they were appended in.
type ResponseElement struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// GatherConfig configures a <Gather> for single-key menus.
type GatherConfig struct {
	NumDigits int
	Timeout   int
	Action    string
	Prompt    string
}

// RecordConfig configures a <Record>.
type RecordConfig struct {
	Action    string
	MaxLength int
	PlayBeep  bool
}

// Option configures a Response.
type Option func(*Response)

// WithLanguage sets the language used for every <Say>.
func WithLanguage(language string) Option {
	return func(r *Response) {
		r.language = language
	}
}

// WithVoice sets the voice used for every <Say>.
func WithVoice(voice string) Option {
	return func(r *Response) {
		r.voice = voice
	}
}

// Response accumulates verbs for a single reply.
type Response struct {
	language string
	voice    string
	el       ResponseElement
}

func NewResponse(opts ...Option) *Response {
	r := &Response{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Response) say(text string) *SayElement {
	return &SayElement{Voice: r.voice, Language: r.language, Text: text}
}

func (r *Response) Say(text string) *Response {
	r.el.Verbs = append(r.el.Verbs, r.say(text))
	return r
}

func (r *Response) Gather(cfg GatherConfig) *Response {
	g := &GatherElement{
		Input:     "dtmf",
		NumDigits: cfg.NumDigits,
		Timeout:   cfg.Timeout,
		Action:    cfg.Action,
		Method:    "POST",
	}
	if cfg.Prompt != "" {
		g.Say = r.say(cfg.Prompt)
	}
	r.el.Verbs = append(r.el.Verbs, g)
	return r
}

func (r *Response) Record(cfg RecordConfig) *Response {
	r.el.Verbs = append(r.el.Verbs, &RecordElement{
		Action:    cfg.Action,
		Method:    "POST",
		MaxLength: cfg.MaxLength,
		PlayBeep:  cfg.PlayBeep,
	})
	return r
}

func (r *Response) Redirect(url string) *Response {
	r.el.Verbs = append(r.el.Verbs, &RedirectElement{Method: "POST", URL: url})
	return r
}

func (r *Response) Dial(number string) *Response {
	r.el.Verbs = append(r.el.Verbs, &DialElement{Number: number})
	return r
}

// Len reports the number of top-level verbs.
func (r *Response) Len() int {
	return len(r.el.Verbs)
}

// String renders the document with the XML header.
func (r *Response) String() string {
	b, err := xml.MarshalIndent(&r.el, "", "    ")
	if err != nil {
		return xml.Header + "<Response></Response>"
	}
	return xml.Header + string(b)
}
