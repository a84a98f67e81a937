package selector

import (
	"github.com/devicelab-dev/uia2-server/pkg/core"
)

// Locator strategies accepted by the find element commands.
const (
	StrategyID              = "id"
	StrategyAccessibilityID = "accessibility id"
	StrategyXPath           = "xpath"
	StrategyClassName       = "class name"
	StrategyText            = "text"
	StrategyUIAutomator     = "-android uiautomator"
)

// FromStrategy builds the selector for a (strategy, value) pair from a find
// request. An empty value or an unknown strategy is an invalid selector.
func FromStrategy(strategy, value string) (Selector, error) {
	if value == "" {
		return nil, core.ErrInvalidSelector.WithMessagef("empty selector for strategy %q", strategy)
	}

	switch strategy {
	case StrategyID:
		return &By{Res: value}, nil
	case StrategyAccessibilityID:
		return &By{Desc: value}, nil
	case StrategyClassName:
		return &By{Clazz: value}, nil
	case StrategyText:
		return &By{Text: value}, nil
	case StrategyUIAutomator:
		return ParseUiSelector(value)
	case StrategyXPath:
		return &XPath{Expr: value}, nil
	default:
		return nil, core.ErrInvalidSelector.WithMessagef("locator strategy %q is not supported", strategy)
	}
}
