// Package state holds the chat session and message cache. State changes only
// through Reduce, a pure function of the previous State and an Action; Store
// serializes dispatches and fans the results out to subscribers.
package state
