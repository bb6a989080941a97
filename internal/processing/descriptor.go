package processing

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
)

// Descriptor formats understood by ExportDescriptor.
const (
	DescriptorJSON    = "json"
	DescriptorUnity   = "xml_unity"
	DescriptorCocos2d = "plist_cocos2d"
)

// DescriptorExt is the file extension for a descriptor format. Unknown
// formats fall back to JSON.
func DescriptorExt(format string) string {
	switch format {
	case DescriptorUnity:
		return "xml"
	case DescriptorCocos2d:
		return "plist"
	default:
		return "json"
	}
}

// ExportDescriptor serializes info for the image file named imageName.
func ExportDescriptor(format string, info SheetInfo, imageName string) (string, error) {
	switch format {
	case DescriptorUnity:
		return UnityXML(info, imageName)
	case DescriptorCocos2d:
		return Cocos2dPlist(info, imageName)
	default:
		return JSON(info, imageName)
	}
}

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Name  string   `json:"name"`
	Frame jsonRect `json:"frame"`
}

type jsonDescriptor struct {
	Image  string      `json:"image"`
	Size   jsonSize    `json:"size"`
	Frames []jsonFrame `json:"frames"`
}

// JSON renders the generic descriptor.
func JSON(info SheetInfo, imageName string) (string, error) {
	d := jsonDescriptor{
		Image:  imageName,
		Size:   jsonSize{W: info.Width, H: info.Height},
		Frames: make([]jsonFrame, len(info.Frames)),
	}
	for i, f := range info.Frames {
		d.Frames[i] = jsonFrame{Name: f.Name, Frame: jsonRect{X: f.X, Y: f.Y, W: f.Width, H: f.Height}}
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json descriptor: %w", err)
	}
	return string(out), nil
}

type unitySubTexture struct {
	Name   string `xml:"name,attr"`
	X      int    `xml:"x,attr"`
	Y      int    `xml:"y,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
}

type unityAtlas struct {
	XMLName     xml.Name          `xml:"TextureAtlas"`
	ImagePath   string            `xml:"imagePath,attr"`
	Width       int               `xml:"width,attr"`
	Height      int               `xml:"height,attr"`
	SubTextures []unitySubTexture `xml:"SubTexture"`
}

// UnityXML renders a TextureAtlas/SubTexture document.
func UnityXML(info SheetInfo, imageName string) (string, error) {
	atlas := unityAtlas{ImagePath: imageName, Width: info.Width, Height: info.Height}
	for _, f := range info.Frames {
		atlas.SubTextures = append(atlas.SubTextures, unitySubTexture{
			Name: f.Name, X: f.X, Y: f.Y, Width: f.Width, Height: f.Height,
		})
	}
	out, err := xml.MarshalIndent(atlas, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal unity descriptor: %w", err)
	}
	return xml.Header + string(out) + "\n", nil
}

const plistDoctype = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">`

// Cocos2dPlist renders the property-list shaped descriptor: a "frames" dict
// keyed by frame name and a "metadata" dict.
func Cocos2dPlist(info SheetInfo, imageName string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(plistDoctype + "\n")

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	p := plistWriter{enc: enc}

	p.start("plist", xml.Attr{Name: xml.Name{Local: "version"}, Value: "1.0"})
	p.start("dict")
	p.elem("key", "frames")
	p.start("dict")
	for _, f := range info.Frames {
		p.elem("key", f.Name)
		p.start("dict")
		p.elem("key", "frame")
		p.elem("string", fmt.Sprintf("{{%d,%d},{%d,%d}}", f.X, f.Y, f.Width, f.Height))
		p.elem("key", "sourceSize")
		p.elem("string", fmt.Sprintf("{%d,%d}", f.Width, f.Height))
		p.end("dict")
	}
	p.end("dict")
	p.elem("key", "metadata")
	p.start("dict")
	p.elem("key", "textureFileName")
	p.elem("string", imageName)
	p.elem("key", "size")
	p.elem("string", fmt.Sprintf("{%d,%d}", info.Width, info.Height))
	p.end("dict")
	p.end("dict")
	p.end("plist")

	if p.err == nil {
		p.err = enc.Flush()
	}
	if p.err != nil {
		return "", fmt.Errorf("marshal cocos2d descriptor: %w", p.err)
	}
	buf.WriteString("\n")
	return buf.String(), nil
}

// plistWriter keeps the first encoder error so the document reads top-down.
type plistWriter struct {
	enc *xml.Encoder
	err error
}

func (p *plistWriter) start(name string, attrs ...xml.Attr) {
	if p.err == nil {
		p.err = p.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
	}
}

func (p *plistWriter) end(name string) {
	if p.err == nil {
		p.err = p.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
	}
}

func (p *plistWriter) elem(name, value string) {
	if p.err == nil {
		p.err = p.enc.EncodeElement(value, xml.StartElement{Name: xml.Name{Local: name}})
	}
}
