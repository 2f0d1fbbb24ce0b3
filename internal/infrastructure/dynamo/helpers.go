package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// epochSeconds renders t as the numeric attribute DynamoDB TTL expects.
// Fractions round up so the item never becomes eligible before t.
func epochSeconds(t time.Time) *types.AttributeValueMemberN {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(sec, 10)}
}
