// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package gateway

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateFrame_ChatRejectsEmptyMessage(t *testing.T) {
	err := validateFrame(&chatFrame{Message: ""})
	assert.Error(t, err)
}

func TestValidateFrame_ChatAcceptsNonEmptyMessage(t *testing.T) {
	err := validateFrame(&chatFrame{Message: "hello"})
	assert.NoError(t, err)
}

func TestValidateFrame_IDFrameRequiresUUID(t *testing.T) {
	assert.Error(t, validateFrame(&idFrame{ID: "not-a-uuid"}))
	assert.Error(t, validateFrame(&idFrame{ID: ""}))
	assert.NoError(t, validateFrame(&idFrame{ID: uuid.NewString()}))
}

func TestValidateFrame_PollStartRejectsNegativeDuration(t *testing.T) {
	err := validateFrame(&pollStartFrame{
		Question:        "favorite color?",
		Options:         []string{"red", "blue"},
		DurationMinutes: -1,
	})
	assert.Error(t, err)
}

func TestValidateFrame_PollStartRejectsEmptyOption(t *testing.T) {
	err := validateFrame(&pollStartFrame{
		Question:        "favorite color?",
		Options:         []string{"red", ""},
		DurationMinutes: 1,
	})
	assert.Error(t, err)
}

func TestValidateFrame_PollVoteRejectsNegativeIndex(t *testing.T) {
	assert.Error(t, validateFrame(&pollVoteFrame{OptionIndex: -1}))
	assert.NoError(t, validateFrame(&pollVoteFrame{OptionIndex: 0}))
}
