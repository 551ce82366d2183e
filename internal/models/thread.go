package models

// ThreadCard - карточка вместе с ответами на неё.
type ThreadCard struct {
	ProposalCard `yaml:",inline"`
	Responses    []ResponseRecord `json:"responses" yaml:"responses"`
}

// NegotiationThread представляет историю переговоров по заявке.
type NegotiationThread struct {
	Request     ServiceRequest `json:"request" yaml:"request"`
	Cards       []ThreadCard   `json:"cards" yaml:"cards"`
	CurrentCard *ProposalCard  `json:"currentCard,omitempty" yaml:"currentCard,omitempty"`
}
