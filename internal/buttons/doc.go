// Package buttons translates debounced GPIO edges into application
// actions.
//
// Each logical button gets a long-press timer on press. Releasing
// before the timer fires resolves a short press; the timer firing
// while the button is still held resolves a long press and suppresses
// the short action on the subsequent release. Actions are bound per
// (button, press kind, mode) so the same physical button does
// different things in photo and recording mode, with ModeAny as a
// mode-independent fallback.
//
// Actions run synchronously on the pin event path and are expected to
// hand long-running work off. Errors and panics from actions are
// contained: logged and signalled by blinking the configured error
// LED, never propagated to the caller.
package buttons
