// Package worker - Nachrichten zwischen Aufrufer und Worker-Actor
//
// Dieses Modul enthaelt:
// - Nachrichten-Typen (messageType Diskriminanten)
// - Request/Response: Umschlaege in beide Richtungen
// - Payload-Typen fuer norms, l2_norm und Fortschritt
// - Sentinel-Fehler des Actor-Lebenszyklus
package worker

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/lora-inspector/inspector/keys"
	"github.com/lora-inspector/inspector/metadata"
)

// Nachrichten-Typen
const (
	TypeIsAvailable         = "is_available"
	TypeFileUpload          = "file_upload"
	TypeMetadata            = "metadata"
	TypeMetadataError       = "metadata_error"
	TypeNetworkModule       = "network_module"
	TypeNetworkType         = "network_type"
	TypeNetworkArgs         = "network_args"
	TypeKeys                = "keys"
	TypeTextEncoderKeys     = "text_encoder_keys"
	TypeUNetKeys            = "unet_keys"
	TypeWeightKeys          = "weight_keys"
	TypeAlphaKeys           = "alpha_keys"
	TypeBaseNames           = "base_names"
	TypeDims                = "dims"
	TypeAlphas              = "alphas"
	TypePrecision           = "precision"
	TypeWeightDecomposition = "weight_decomposition"
	TypeRankStabilized      = "rank_stabilized"
	TypeL2Norm              = "l2_norm"
	TypeL2NormsProgress     = "l2_norms_progress"
	TypeNorms               = "norms"
	TypeNormsProgress       = "norms_progress"
)

var (
	// ErrActorUnavailable wird zurueckgegeben wenn fuer einen Namen kein Actor existiert
	ErrActorUnavailable = errors.New("no worker for file")

	// ErrIngestionTimeout wird zurueckgegeben wenn das Laden nicht rechtzeitig bestaetigt wird
	ErrIngestionTimeout = errors.New("file ingestion timed out")

	// ErrActorTerminated wird zurueckgegeben wenn der Actor beendet wurde
	ErrActorTerminated = errors.New("worker terminated")

	// ErrNotReady wird zurueckgegeben wenn noch keine Datei geladen ist
	ErrNotReady = errors.New("worker has no file loaded")

	// ErrAlreadyLoaded wird zurueckgegeben wenn ein Actor eine zweite Datei laden soll
	ErrAlreadyLoaded = errors.New("worker already holds a file")

	// ErrUnknownMessageType wird fuer unbekannte Nachrichten-Typen zurueckgegeben
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Finished gibt den Sentinel-Typ zu einem Fortschritts-Typ zurueck
func Finished(messageType string) string {
	return messageType + "_finished"
}

// Request ist eine Nachricht an den Actor. Ohne Reply antwortet der Actor nie.
type Request struct {
	Type          string   `json:"messageType"`
	Reply         bool     `json:"reply,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Name          string   `json:"name,omitempty"`
	BaseName      string   `json:"baseName,omitempty"`
	Metrics       []string `json:"metrics,omitempty"`
	Path          string   `json:"path,omitempty"`
}

func (r Request) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", r.Type),
		slog.Bool("reply", r.Reply),
	}
	if r.CorrelationID != "" {
		attrs = append(attrs, slog.String("id", r.CorrelationID))
	}
	if r.BaseName != "" {
		attrs = append(attrs, slog.String("base", r.BaseName))
	}
	return slog.GroupValue(attrs...)
}

// field gibt ein benanntes Feld fuer die Korrelation zurueck
func (r Request) field(name string) (string, bool) {
	switch name {
	case "messageType":
		return r.Type, true
	case "correlationId":
		return r.CorrelationID, true
	case "name":
		return r.Name, true
	case "baseName":
		return r.BaseName, true
	default:
		return "", false
	}
}

// Response ist eine Nachricht vom Actor. Type entspricht dem Type der Anfrage,
// ausser bei file_upload (metadata/metadata_error) und Sentinels.
type Response struct {
	Type          string `json:"messageType"`
	CorrelationID string `json:"correlationId,omitempty"`
	Name          string `json:"name,omitempty"`
	BaseName      string `json:"baseName,omitempty"`
	Payload       any    `json:"payload,omitempty"`
	Err           error  `json:"-"`
}

func (r Response) field(name string) (string, bool) {
	switch name {
	case "messageType":
		return r.Type, true
	case "correlationId":
		return r.CorrelationID, true
	case "name":
		return r.Name, true
	case "baseName":
		return r.BaseName, true
	default:
		return "", false
	}
}

// replyTypes sind die Antwort-Typen, deren Type vom Anfrage-Typ abweicht
var replyTypes = map[string][]string{
	TypeFileUpload: {TypeMetadata, TypeMetadataError},
}

// answers meldet ob ein Response-Typ eine Anfrage vom Typ requestType beantwortet
func answers(requestType, responseType string) bool {
	if alt, ok := replyTypes[requestType]; ok {
		return slices.Contains(alt, responseType)
	}
	return requestType == responseType
}

// closestType schlaegt den naechsten bekannten Nachrichten-Typ vor
func closestType(t string) string {
	best, dist := "", -1
	for known := range handlers {
		if d := levenshtein.ComputeDistance(t, known); dist < 0 || d < dist || (d == dist && known < best) {
			best, dist = known, d
		}
	}
	for _, known := range []string{TypeIsAvailable, TypeFileUpload} {
		if d := levenshtein.ComputeDistance(t, known); d < dist {
			best, dist = known, d
		}
	}
	return best
}

// Progress ist die Nutzlast einer Fortschritts-Nachricht
type Progress struct {
	BaseName     string `json:"baseName"`
	CurrentCount int    `json:"currentCount"`
	TotalCount   int    `json:"totalCount"`
}

// NormsPayload ist die Antwort auf norms
type NormsPayload struct {
	BaseName string             `json:"baseName"`
	Norms    map[string]float64 `json:"norms"`
}

// BlockMeta beschreibt einen Block im l2_norm Ergebnis
type BlockMeta struct {
	Type       string      `json:"type"`
	Family     keys.Family `json:"family"`
	BlockType  string      `json:"blockType"`
	BlockID    int         `json:"blockId"`
	ChartIndex int         `json:"chartIndex"`
}

// BlockNorm ist der Mittelwert der L2-Normen aller Base-Namen eines Blocks
type BlockNorm struct {
	Mean     float64   `json:"mean"`
	Count    int       `json:"count"`
	Metadata BlockMeta `json:"metadata"`
}

// L2NormPayload ist die Antwort auf l2_norm: Familie -> kanonischer Name -> Block
type L2NormPayload struct {
	Norms        map[string]map[string]BlockNorm `json:"norms"`
	Unrecognized []string                        `json:"unrecognized,omitempty"`
	Failed       []string                        `json:"failed,omitempty"`
}

// MetadataPayload ist die Antwort auf file_upload und metadata
type MetadataPayload struct {
	Name       string             `json:"name"`
	Digest     string             `json:"digest"`
	Size       int64              `json:"size"`
	NumTensors int                `json:"numTensors"`
	Metadata   *metadata.Metadata `json:"metadata"`
}
