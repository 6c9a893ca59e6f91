package compiler

// ---------------------------------------------------------------------------
// Parse time validation
// ---------------------------------------------------------------------------

func validateHashLiteral(pairs []HashPair) *Error {
	for _, pair := range pairs {
		if err := validateNodeKind(pair.Key, NodeExpression); err != nil {
			return err
		}
		if err := validateNodeKind(pair.Value, NodeExpression); err != nil {
			return err
		}
	}
	return nil
}

func validateArrayLiteral(items []Node) *Error {
	for _, item := range items {
		if err := validateNodeKind(item, NodeExpression); err != nil {
			return err
		}
	}
	return nil
}

// validateAssignee checks that a node can be assigned to: an identifier, an
// index expression, or an array literal of valid assignees.
func validateAssignee(assignee Node) *Error {
	switch value := assignee.Value.(type) {
	case Identifier:
		return nil
	case Index:
		return nil
	case ArrayLiteral:
		for _, item := range value {
			if err := validateAssignee(item); err != nil {
				return err
			}
		}
		return nil
	}

	return &Error{Kind: ErrInvalidAssignee, Range: assignee.Range}
}

func validateNodeKind(node Node, expected NodeKind) *Error {
	if node.Value.Kind() != expected {
		return &Error{
			Kind:         ErrInvalidNodeKind,
			ExpectedNode: expected,
			GotNode:      node.Value.Kind(),
			Range:        node.Range,
		}
	}
	return nil
}

func validateTokenKind(token Token, expected TokenKind) *Error {
	if token.Kind != expected {
		return &Error{
			Kind:          ErrInvalidTokenKind,
			ExpectedToken: expected,
			GotToken:      token.Kind,
			Range:         token.Range,
		}
	}
	return nil
}
