package models

var (
	QAPromptTemplate = `You are a helpful AI assistant. Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

Context: %s

Question: %s

Provide a detailed answer:`
)
