// args.go - ss_network_args Dekodierung
//
// Trainer schreiben die Netzwerk-Argumente uneinheitlich: Zahlen und
// Booleans kommen oft als Strings ("8", "True"), Block-Dimensionen als
// kommagetrennte Liste ("2,4,4,8"). Die Loose*-Typen akzeptieren alle
// Varianten.

package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NetworkArgs sind die bekannten Felder aus ss_network_args
type NetworkArgs struct {
	Algo            string       `json:"algo,omitempty"`
	Preset          string       `json:"preset,omitempty"`
	Dropout         *LooseFloat  `json:"dropout,omitempty"`
	RankDropout     *LooseFloat  `json:"rank_dropout,omitempty"`
	ModuleDropout   *LooseFloat  `json:"module_dropout,omitempty"`
	ConvDim         *LooseInt    `json:"conv_dim,omitempty"`
	ConvAlpha       *LooseFloat  `json:"conv_alpha,omitempty"`
	Factor          *LooseInt    `json:"factor,omitempty"`
	BlockDims       LooseInts    `json:"block_dims,omitempty"`
	BlockAlphas     LooseFloats  `json:"block_alphas,omitempty"`
	ConvBlockDims   LooseInts    `json:"conv_block_dims,omitempty"`
	ConvBlockAlphas LooseFloats  `json:"conv_block_alphas,omitempty"`
	DownLRWeight    LooseString  `json:"down_lr_weight,omitempty"`
	MidLRWeight     LooseString  `json:"mid_lr_weight,omitempty"`
	UpLRWeight      LooseString  `json:"up_lr_weight,omitempty"`
	TrainNorm       *LooseBool   `json:"train_norm,omitempty"`
	UseCP           *LooseBool   `json:"use_cp,omitempty"`
	UseTucker       *LooseBool   `json:"use_tucker,omitempty"`
	UseScalar       *LooseBool   `json:"use_scalar,omitempty"`
	Rescale         *LooseBool   `json:"rescale,omitempty"`
	Constrain       *LooseFloat  `json:"constrain,omitempty"`
	DoRAWD          *LooseBool   `json:"dora_wd,omitempty"`
	RSLoRA          *LooseBool   `json:"rs_lora,omitempty"`
	RankStabilized  *LooseBool   `json:"rank_stabilized,omitempty"`
	BypassMode      *LooseBool   `json:"bypass_mode,omitempty"`
	LoraPlusRatio   *LooseFloat  `json:"loraplus_lr_ratio,omitempty"`
	TrainBlocks     LooseString  `json:"train_blocks,omitempty"`
	SplitQKV        *LooseBool   `json:"split_qkv,omitempty"`
	TrainT5XXL      *LooseBool   `json:"train_t5xxl,omitempty"`
	ExcludePatterns LooseStrings `json:"exclude_patterns,omitempty"`
	IncludePatterns LooseStrings `json:"include_patterns,omitempty"`
}

// NetworkArgs dekodiert ss_network_args. nil bedeutet, dass die Datei keine
// Argumente enthaelt; kaputtes JSON ergibt leere Argumente.
func (m *Metadata) NetworkArgs() *NetworkArgs {
	if _, ok := m.raw.Get(KeyNetworkArgs); !ok {
		return nil
	}

	var args NetworkArgs
	if !decodeField(m, KeyNetworkArgs, &args) {
		return &NetworkArgs{}
	}
	return &args
}

func flag(b *LooseBool) bool {
	return b != nil && bool(*b)
}

// LooseBool akzeptiert true, "True", "true", "1" und 1
type LooseBool bool

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	s, err := looseScalar(data)
	if err != nil {
		return err
	}

	switch strings.ToLower(s) {
	case "true", "1", "yes":
		*b = true
	case "false", "0", "no", "", "none", "null":
		*b = false
	default:
		return fmt.Errorf("invalid bool %q", s)
	}
	return nil
}

// LooseInt akzeptiert Zahlen und Strings mit Zahlen
type LooseInt int

func (i *LooseInt) UnmarshalJSON(data []byte) error {
	s, err := looseScalar(data)
	if err != nil {
		return err
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid int %q", s)
	}
	*i = LooseInt(f)
	return nil
}

// LooseFloat akzeptiert Zahlen und Strings mit Zahlen
type LooseFloat float64

func (f *LooseFloat) UnmarshalJSON(data []byte) error {
	s, err := looseScalar(data)
	if err != nil {
		return err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid float %q", s)
	}
	*f = LooseFloat(v)
	return nil
}

// LooseString akzeptiert Strings, Zahlen und Listen und haelt sie als Text
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
		return nil
	}

	*s = LooseString(data)
	return nil
}

// LooseInts akzeptiert [2, 4] ebenso wie "2,4"
type LooseInts []int

func (l *LooseInts) UnmarshalJSON(data []byte) error {
	parts, err := looseList(data)
	if err != nil {
		return err
	}

	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("invalid int %q", p)
		}
		out = append(out, int(v))
	}
	*l = out
	return nil
}

// LooseFloats akzeptiert [1.0, 2] ebenso wie "1.0,2"
type LooseFloats []float64

func (l *LooseFloats) UnmarshalJSON(data []byte) error {
	parts, err := looseList(data)
	if err != nil {
		return err
	}

	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q", p)
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// LooseStrings akzeptiert eine Liste oder einen einzelnen String
type LooseStrings []string

func (l *LooseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var v []string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = v
		return nil
	}

	s, err := looseScalar(data)
	if err != nil {
		return err
	}
	*l = []string{s}
	return nil
}

// looseScalar gibt einen Skalar als Text zurueck
func looseScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}

	if data[0] == '[' || data[0] == '{' {
		return "", fmt.Errorf("expected scalar, got %s", data)
	}
	return string(data), nil
}

// looseList zerlegt eine JSON-Liste oder einen kommagetrennten String
func looseList(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}

		out := make([]string, 0, len(raw))
		for _, r := range raw {
			s, err := looseScalar(r)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}

	s, err := looseScalar(data)
	if err != nil {
		return nil, err
	}

	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
