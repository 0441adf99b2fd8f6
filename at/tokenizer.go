package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing replies of the Wi-Fi radio. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also recognizes the
// CIPSEND input prompt (">", optionally followed by a space).
//
// Unlike the Scanner, the Splitter is not used to decide whether a command
// succeeded. It only breaks an already complete reply into lines for logging
// and error details.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match the send prompt
	if bytes.HasPrefix(data, []byte(Prompt+" ")) {
		return len(Prompt) + 1, data[0:len(Prompt)], nil
	}
	if len(data) == len(Prompt) && string(data) == Prompt && atEOF {
		return len(Prompt), data, nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of a single reply line.
func Classify(line string) ResponseType {
	if line == Prompt {
		return TypePrompt
	}

	switch line {
	case OK, ERROR, Ready, SendOK, SendFail, FAIL, StatusWifiDisconnected:
		return TypeFinal
	case StatusWifiConnected, StatusWifiGotIP:
		return TypeStatus
	}

	switch {
	case strings.HasPrefix(line, StatusJoinFailure), strings.HasPrefix(line, StatusReceive):
		return TypeStatus
	case strings.HasSuffix(line, ","+StatusLinkConnected), strings.HasSuffix(line, ","+StatusLinkClosed):
		return TypeStatus
	default:
		return TypeData
	}
}

// Lines splits a raw reply into its non-empty lines.
func Lines(raw string) []string {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Split(Splitter)

	var lines []string
	for scanner.Scan() {
		if token := scanner.Text(); token != "" {
			lines = append(lines, token)
		}
	}
	return lines
}
