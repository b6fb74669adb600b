package messages

import (
	"encoding/base64"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsonNull = []byte(`null`)

// ContentOrParts is either a plain string or a list of typed content parts.
// Plain content wins during marshaling when both are set.
type ContentOrParts struct {
	Content string
	Parts   []ContentPart
	_       struct{} // require keyed usage
}

func (c ContentOrParts) MarshalJSON() ([]byte, error) {
	if c.Content != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

func (c *ContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if !jv.IsArray() {
		c.Content = jv.String()
		return nil
	}

	arr := jv.Array()
	parts := make([]ContentPart, len(arr))
	for idx, av := range arr {
		part, err := decodeContentPart(av)
		if err != nil {
			return fmt.Errorf("content part %d: %w", idx, err)
		}
		parts[idx] = part
	}
	c.Parts = parts
	return nil
}

func decodeContentPart(jv gjson.Result) (ContentPart, error) {
	switch tpe := jv.Get("type").String(); tpe {
	case "text":
		return Text(jv.Get("text").String()), nil
	case "image":
		return ImageContentPart{URL: jv.Get("url").String(), Detail: jv.Get("detail").String()}, nil
	case "audio":
		data, err := base64.StdEncoding.DecodeString(jv.Get("input_audio.data").String())
		if err != nil {
			return nil, fmt.Errorf("invalid audio data: %w", err)
		}
		return Audio(data, jv.Get("input_audio.format").String()), nil
	default:
		return nil, fmt.Errorf("unknown content part type %q", tpe)
	}
}

// ContentPart is a piece of multi-part user content.
type ContentPart interface {
	contentPart()
}

// TextContentPart carries plain text.
type TextContentPart struct {
	Text string `json:"text"`
}

func (TextContentPart) contentPart()          {}
func (TextContentPart) assistantContentPart() {}

func (t TextContentPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes([]byte(`{"type":"text"}`), "text", t.Text)
}

// Text builds a text content part.
func Text(text string) TextContentPart {
	return TextContentPart{Text: text}
}

// ImageContentPart references an image by URL. Detail is the optional
// fidelity hint ("low", "high", "auto") some providers accept.
type ImageContentPart struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

func (ImageContentPart) contentPart() {}

func (i ImageContentPart) MarshalJSON() ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{"type":"image"}`), "url", i.URL)
	if err != nil {
		return nil, err
	}
	if i.Detail == "" {
		return out, nil
	}
	return sjson.SetBytes(out, "detail", i.Detail)
}

// Image builds an image content part.
func Image(url string) ImageContentPart {
	return ImageContentPart{URL: url}
}

// AudioContentPart carries inline binary audio.
type AudioContentPart struct {
	InputAudio InputAudio `json:"input_audio"`
}

func (AudioContentPart) contentPart() {}

func (a AudioContentPart) MarshalJSON() ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{"type":"audio"}`), "input_audio.data", base64.StdEncoding.EncodeToString(a.InputAudio.Data))
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "input_audio.format", a.InputAudio.Format)
}

// InputAudio is raw audio data plus its encoding format.
type InputAudio struct {
	Data   []byte `json:"data"`
	Format string `json:"format"`
}

// Audio builds an audio content part.
func Audio(data []byte, format string) AudioContentPart {
	return AudioContentPart{InputAudio: InputAudio{Data: data, Format: format}}
}

// AssistantContentOrParts is the assistant-side counterpart of ContentOrParts:
// plain text, a refusal, or a list of assistant parts.
type AssistantContentOrParts struct {
	Content string
	Refusal string
	Parts   []AssistantContentPart
	_       struct{} // require keyed usage
}

func (c AssistantContentOrParts) MarshalJSON() ([]byte, error) {
	if c.Content != "" && c.Refusal != "" {
		return nil, fmt.Errorf("both content and refusal are set")
	}
	if c.Content != "" {
		return json.Marshal(c.Content)
	}
	if c.Refusal != "" {
		return json.Marshal(RefusalContentPart{Refusal: c.Refusal})
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

func (c *AssistantContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	switch {
	case jv.IsArray():
		arr := jv.Array()
		parts := make([]AssistantContentPart, len(arr))
		for idx, av := range arr {
			switch tpe := av.Get("type").String(); tpe {
			case "text":
				parts[idx] = Text(av.Get("text").String())
			case "refusal":
				parts[idx] = Refusal(av.Get("refusal").String())
			default:
				return fmt.Errorf("assistant content part %d has unknown type %q", idx, tpe)
			}
		}
		c.Parts = parts
	case jv.IsObject() && jv.Get("type").String() == "refusal":
		c.Refusal = jv.Get("refusal").String()
	default:
		c.Content = jv.String()
	}
	return nil
}

// AssistantContentPart is a piece of multi-part assistant content.
type AssistantContentPart interface {
	assistantContentPart()
}

// RefusalContentPart marks content the model declined to produce.
type RefusalContentPart struct {
	Refusal string `json:"refusal"`
}

func (RefusalContentPart) assistantContentPart() {}

func (r RefusalContentPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes([]byte(`{"type":"refusal"}`), "refusal", r.Refusal)
}

// Refusal builds a refusal content part.
func Refusal(refusal string) RefusalContentPart {
	return RefusalContentPart{Refusal: refusal}
}
