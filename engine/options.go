package engine

import "github.com/cloudchase/chatstream/config"

// Params is the fully resolved set of generation parameters handed to an
// Engine.
type Params struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
	EOSTokenID   int
	PadTokenID   int
}

// Defaults are the process-wide generation defaults.
type Defaults struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// DefaultsFrom reads the generation defaults out of the settings.
func DefaultsFrom(s *config.Settings) Defaults {
	return Defaults{
		MaxNewTokens: s.MaxNewTokens,
		Temperature:  s.Temperature,
		TopP:         s.TopP,
	}
}

// Overrides carries caller supplied values. A nil field is absent; a non-nil
// field is used even when it points at zero.
type Overrides struct {
	MaxNewTokens *int
	Temperature  *float64
	TopP         *float64
}

// Resolve fills every absent override from d and takes the stop and pad
// tokens from the loaded engine. Sampling is always on.
func Resolve(d Defaults, o Overrides, info Info) Params {
	p := Params{
		MaxNewTokens: d.MaxNewTokens,
		Temperature:  d.Temperature,
		TopP:         d.TopP,
		DoSample:     true,
		EOSTokenID:   info.EOSTokenID,
		PadTokenID:   info.PadTokenID,
	}
	if o.MaxNewTokens != nil {
		p.MaxNewTokens = *o.MaxNewTokens
	}
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	if p.PadTokenID == TokenModelDefault {
		p.PadTokenID = p.EOSTokenID
	}
	return p
}
