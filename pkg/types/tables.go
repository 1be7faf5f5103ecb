package types

type TableName string

func (s TableName) Name() string {
	return string(s)
}

const (
	TABLE_CHAT_SESSION   = TableName("chat_sessions")
	TABLE_CHAT_MESSAGE   = TableName("chat_messages")
	TABLE_PARSED_ENTITY  = TableName("claude_parsed_entities")
	TABLE_PROJECT        = TableName("projects")
	TABLE_TASK           = TableName("tasks")
	TABLE_GOAL           = TableName("goals")
	TABLE_MILESTONE      = TableName("milestones")
	TABLE_KNOWLEDGE_ITEM = TableName("knowledge_items")
	TABLE_INSIGHT        = TableName("insights")
)
