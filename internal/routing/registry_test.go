package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridz/telegram-fanout/internal/telegram"
)

const sampleModules = `
token: "12345:TEST"
botModules:
  reactions:
    in: {type: http, host: localhost, port: 8081, endpoint: /bot/update}
    allowedUpdates:
      "group,super_group": [message, message_reaction]
    allowedChats:
      "group,super_group": [-100200, -100300]
  events:
    in: {type: http, host: localhost, port: 8082, endpoint: /bot/update}
    allowedUpdates:
      "Channel": [channel_post]
    allowedChats:
      "Channel": ["All"]
`

func buildSample(t *testing.T) *Registry {
	t.Helper()
	doc, err := ParseModulesDoc([]byte(sampleModules))
	require.NoError(t, err)
	reg, err := BuildRegistry(doc)
	require.NoError(t, err)
	return reg
}

func TestParseModulesDoc_PreservesOrder(t *testing.T) {
	doc, err := ParseModulesDoc([]byte(sampleModules))
	require.NoError(t, err)

	assert.Equal(t, "12345:TEST", doc.Token)
	require.Len(t, doc.Modules, 2)
	assert.Equal(t, "reactions", doc.Modules[0].Name)
	assert.Equal(t, "events", doc.Modules[1].Name)
}

func TestBuildRegistry_TwoStageMatching(t *testing.T) {
	reg := buildSample(t)
	reactions := reg.Modules()[0]

	// Both stages pass.
	assert.True(t, reactions.Matches(Origin{SourceGroup, -100200}, telegram.TypeMessage))

	// Kind not allowed for the source.
	assert.False(t, reactions.Matches(Origin{SourceGroup, -100200}, telegram.TypeCallbackQuery))

	// Chat not allowed for the source.
	assert.False(t, reactions.Matches(Origin{SourceGroup, -999}, telegram.TypeMessage))

	// Source with no entry at all never matches, whatever the kind.
	assert.False(t, reactions.Matches(Origin{SourcePrivateChat, -100200}, telegram.TypeMessage))
}

func TestBuildRegistry_CommaDelimitedSourceKeys(t *testing.T) {
	reg := buildSample(t)
	reactions := reg.Modules()[0]

	// "group,super_group" grants both categories.
	assert.True(t, reactions.Matches(Origin{SourceGroup, -100200}, telegram.TypeMessageReaction))
	assert.True(t, reactions.Matches(Origin{SourceSuperGroup, -100300}, telegram.TypeMessageReaction))
}

func TestBuildRegistry_Wildcard(t *testing.T) {
	reg := buildSample(t)
	events := reg.Modules()[1]

	for _, id := range []int64{-1, 0, 12345, -1009999} {
		assert.True(t, events.Matches(Origin{SourceChannel, id}, telegram.TypeChannelPost),
			"wildcard should match channel id %d", id)
	}
	assert.False(t, events.Matches(Origin{SourceChannel, 1}, telegram.TypeMessage))
}

func TestBuildRegistry_MergesDuplicateSourceKeys(t *testing.T) {
	doc, err := ParseModulesDoc([]byte(`
botModules:
  stats:
    in: {type: http, host: localhost, port: 8083, endpoint: /u}
    allowedUpdates:
      "group": [message]
      "Group,private_chat": [callback_query]
    allowedChats:
      "group": [1]
      "GROUP": [2]
      "private_chat": ["All"]
`))
	require.NoError(t, err)
	reg, err := BuildRegistry(doc)
	require.NoError(t, err)

	stats := reg.Modules()[0]

	// Kinds union-merge across duplicate keys, not overwrite.
	assert.True(t, stats.Matches(Origin{SourceGroup, 1}, telegram.TypeMessage))
	assert.True(t, stats.Matches(Origin{SourceGroup, 1}, telegram.TypeCallbackQuery))
	assert.True(t, stats.Matches(Origin{SourceGroup, 2}, telegram.TypeMessage))
	assert.True(t, stats.Matches(Origin{SourcePrivateChat, 42}, telegram.TypeCallbackQuery))
	assert.False(t, stats.Matches(Origin{SourceGroup, 3}, telegram.TypeMessage))
}

func TestBuildRegistry_CaseInsensitiveNames(t *testing.T) {
	doc, err := ParseModulesDoc([]byte(`
botModules:
  m:
    in: {type: http, host: h, port: 1, endpoint: /u}
    allowedUpdates:
      "SUPER_GROUP": [MESSAGE, Callback_Query]
    allowedChats:
      "superGroup": ["all"]
`))
	require.NoError(t, err)
	reg, err := BuildRegistry(doc)
	require.NoError(t, err)

	m := reg.Modules()[0]
	assert.True(t, m.Matches(Origin{SourceSuperGroup, 7}, telegram.TypeMessage))
	assert.True(t, m.Matches(Origin{SourceSuperGroup, 7}, telegram.TypeCallbackQuery))
}

func TestBuildRegistry_MalformedConfigFails(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad source name", `
botModules:
  m:
    in: {type: http, host: h, port: 1, endpoint: /u}
    allowedUpdates:
      "garage": [message]
`},
		{"bad update kind", `
botModules:
  m:
    in: {type: http, host: h, port: 1, endpoint: /u}
    allowedUpdates:
      "group": [telepathy]
`},
		{"bad chat id", `
botModules:
  m:
    in: {type: http, host: h, port: 1, endpoint: /u}
    allowedChats:
      "group": [sometimes]
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseModulesDoc([]byte(tc.yaml))
			require.NoError(t, err)
			_, err = BuildRegistry(doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `"m"`)
		})
	}
}

func TestRegistry_AllowedTypes(t *testing.T) {
	reg := buildSample(t)

	assert.Equal(t, []telegram.UpdateType{
		telegram.TypeChannelPost,
		telegram.TypeMessage,
		telegram.TypeMessageReaction,
	}, reg.AllowedTypes())
}

func TestEndpointURL(t *testing.T) {
	e := Endpoint{Scheme: "http", Host: "localhost", Port: 8081, Path: "/bot/update"}
	assert.Equal(t, "http://localhost:8081/bot/update", e.URL())
}
