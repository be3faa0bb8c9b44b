package domain

// EffectKind names a side effect a state transition asks its caller to carry
// out. Transitions never perform I/O themselves.
type EffectKind string

const (
	EffectPersist       EffectKind = "persist"
	EffectBroadcast     EffectKind = "broadcast"
	EffectSystemMessage EffectKind = "system_message"
)

type Effect struct {
	Kind EffectKind
	Text string
}

type Effects []Effect

func (e Effects) Has(kind EffectKind) bool {
	for _, eff := range e {
		if eff.Kind == kind {
			return true
		}
	}
	return false
}

func (e Effects) SystemMessages() []string {
	var texts []string
	for _, eff := range e {
		if eff.Kind == EffectSystemMessage {
			texts = append(texts, eff.Text)
		}
	}
	return texts
}

func persist() Effects {
	return Effects{{Kind: EffectPersist}}
}

func persistAndBroadcast() Effects {
	return Effects{{Kind: EffectPersist}, {Kind: EffectBroadcast}}
}

func announce(text string) Effects {
	return Effects{{Kind: EffectPersist}, {Kind: EffectSystemMessage, Text: text}}
}
