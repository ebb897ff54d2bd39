package narrative

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func offlineClient() *Client {
	return NewClient("", "", time.Second, zap.NewNop())
}

func TestOfflineGenerateTextIsDeterministic(t *testing.T) {
	client := offlineClient()
	ctx := context.Background()

	first := client.GenerateText(ctx, "meeting topic for floor 1")
	second := client.GenerateText(ctx, "meeting topic for floor 1")
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestValidateNameLocalRules(t *testing.T) {
	client := offlineClient()
	ctx := context.Background()

	assert.True(t, client.ValidateName(ctx, "Avery Bennett"))
	assert.True(t, client.ValidateName(ctx, "Mary-Jane O'Neil"))

	assert.False(t, client.ValidateName(ctx, ""))
	assert.False(t, client.ValidateName(ctx, "Madonna"))
	assert.False(t, client.ValidateName(ctx, "Robert ); DROP TABLE"))
	assert.False(t, client.ValidateName(ctx, "Jean Luc 42"))
}

func TestGenerateUniqueNameAvoidsTaken(t *testing.T) {
	client := offlineClient()
	ctx := context.Background()

	existing := []string{"Avery Bennett", "Jordan Calloway"}
	name := client.GenerateUniqueName(ctx, existing)
	assert.NotEmpty(t, name)
	assert.True(t, localNameValid(name))
	for _, taken := range existing {
		assert.NotEqual(t, taken, name)
	}
}

func TestGenerateUniqueNameExhaustedPool(t *testing.T) {
	client := offlineClient()
	ctx := context.Background()

	taken := map[string]bool{}
	var existing []string
	for i := 0; i < len(fallbackFirstNames)*len(fallbackLastNames); i++ {
		name := fallbackUniqueName(taken, i)
		taken[strings.ToLower(name)] = true
		existing = append(existing, name)
	}

	// 池子耗尽后仍能产出不冲突的姓名
	name := client.GenerateUniqueName(ctx, existing)
	assert.NotEmpty(t, name)
	assert.False(t, taken[strings.ToLower(name)])
}
