package api

import (
	"maps"
	"time"
)

type (
	// DataPacket is the unit of payload passed between steps. Ownership
	// transfers step to step; the producing step no longer needs it once
	// it has been persisted and handed off
	DataPacket struct {
		Content     string       `json:"content"`
		Metadata    Args         `json:"metadata,omitempty"`
		Attachments []Attachment `json:"attachments,omitempty"`
		Processing  Args         `json:"processing,omitempty"`
	}

	// Attachment is a file reference carried alongside packet content
	Attachment struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Mime string `json:"mime,omitempty"`
		Size int64  `json:"size,omitempty"`
	}

	// EngineData is a job-scoped side channel for values that must bypass
	// AI-visible content but still reach later steps. It lives for the
	// lifetime of the job and is deleted with it
	EngineData map[string]string
)

// Common packet metadata keys written by fetch steps
const (
	MetaSourceType = Name("source_type")
	MetaItemID     = Name("item_id")
	MetaSourceURL  = Name("source_url")
	MetaTimestamp  = Name("timestamp")
	MetaTitle      = Name("title")
)

// Well-known engine data keys
const (
	EngineSourceURL = "source_url"
	EngineImageURL  = "image_url"
)

// NewPacket creates a packet for a fetched item with standard metadata
func NewPacket(
	content string, source SourceType, item ItemID, fetched time.Time,
) *DataPacket {
	return &DataPacket{
		Content: content,
		Metadata: Args{
			MetaSourceType: string(source),
			MetaItemID:     string(item),
			MetaTimestamp:  fetched.UTC().Format(time.RFC3339),
		},
	}
}

// TextPacket creates a packet carrying only content, as produced by
// steps that synthesize output rather than fetch source items
func TextPacket(content string) *DataPacket {
	return &DataPacket{Content: content, Metadata: Args{}}
}

// SetContent returns a new packet with the content replaced
func (p *DataPacket) SetContent(content string) *DataPacket {
	res := *p
	res.Content = content
	return &res
}

// SetMeta returns a new packet with the metadata entry set
func (p *DataPacket) SetMeta(name Name, value any) *DataPacket {
	res := *p
	res.Metadata = p.Metadata.Set(name, value)
	return &res
}

// Annotate returns a new packet with a processing annotation added.
// Annotations record what intermediate steps did without disturbing
// content or metadata
func (p *DataPacket) Annotate(name Name, value any) *DataPacket {
	res := *p
	res.Processing = p.Processing.Set(name, value)
	return &res
}

// AddAttachment returns a new packet with the attachment appended
func (p *DataPacket) AddAttachment(att Attachment) *DataPacket {
	res := *p
	res.Attachments = make([]Attachment, len(p.Attachments)+1)
	copy(res.Attachments, p.Attachments)
	res.Attachments[len(p.Attachments)] = att
	return &res
}

// SourceItem extracts the dedup identity of the packet, if present
func (p *DataPacket) SourceItem() (SourceType, ItemID, bool) {
	source := p.Metadata.GetString(MetaSourceType, "")
	item := p.Metadata.GetString(MetaItemID, "")
	if source == "" || item == "" {
		return "", "", false
	}
	return SourceType(source), ItemID(item), true
}

// Set returns a new EngineData with the entry added
func (d EngineData) Set(key, value string) EngineData {
	if d == nil {
		return EngineData{key: value}
	}
	res := maps.Clone(d)
	res[key] = value
	return res
}

// Get retrieves a value, returning false when absent or empty
func (d EngineData) Get(key string) (string, bool) {
	val, ok := d[key]
	if !ok || val == "" {
		return "", false
	}
	return val, true
}
