// Package topics builds the account-scoped MQTT topic strings a device uses
// for registration and signalling.
//
// All topics live under "{username}/wprsnpr/". The device-scoped topics add
// the broker client id:
//
//	{user}/wprsnpr/description/status                       publish description
//	{user}/wprsnpr/{clientID}/description/status/broker     registration result
//	{user}/wprsnpr/{clientID}/signals/device                device -> broker
//	{user}/wprsnpr/{clientID}/signals/broker                broker -> device
package topics

import (
	"errors"
	"fmt"
	"strings"
)

// Fixed path segments.
const (
	Namespace         = "/wprsnpr"
	descriptionStatus = "/description/status"
	brokerSuffix      = "/broker"
	signalsSegment    = "/signals/"
)

// ErrIncomplete is returned when any topic of the set cannot be built.
// A session must not subscribe or publish without a complete Set.
var ErrIncomplete = errors.New("topics: incomplete topic set")

// Set holds the four topics of a session. The zero Set is never valid.
type Set struct {
	Description       string
	DescriptionStatus string
	SignalDevice      string
	SignalBroker      string
}

// Build derives the topic set for username and clientID.
//
// Build is a pure function: the same inputs always give the same Set.
func Build(username, clientID string) (Set, error) {
	if err := checkSegment("username", username); err != nil {
		return Set{}, err
	}
	if err := checkSegment("client id", clientID); err != nil {
		return Set{}, err
	}

	root := username + Namespace
	device := root + "/" + clientID

	s := Set{
		Description:       root + descriptionStatus,
		DescriptionStatus: device + descriptionStatus + brokerSuffix,
		SignalDevice:      device + signalsSegment + "device",
		SignalBroker:      device + signalsSegment + "broker",
	}
	if !s.Complete() {
		return Set{}, ErrIncomplete
	}
	return s, nil
}

// Complete reports whether every topic is present.
func (s Set) Complete() bool {
	return s.Description != "" && s.DescriptionStatus != "" &&
		s.SignalDevice != "" && s.SignalBroker != ""
}

// Subscriptions lists the topics the device subscribes to.
func (s Set) Subscriptions() []string {
	return []string{s.DescriptionStatus, s.SignalBroker}
}

// checkSegment rejects values that would produce a malformed or wildcard topic.
func checkSegment(what, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is empty", ErrIncomplete, what)
	}
	if strings.ContainsAny(v, "+#/\x00") {
		return fmt.Errorf("%w: %s %q contains a reserved character", ErrIncomplete, what, v)
	}
	return nil
}
