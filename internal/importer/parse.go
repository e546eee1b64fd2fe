package importer

import "strings"

// ParseContacts parses pasted import text, one contact per line in the
// form email[,firstName[,lastName]]. Blank lines and lines with an empty
// email field are dropped silently; fields past the third are ignored.
func ParseContacts(text string) []Contact {
	var contacts []Contact

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		email := strings.TrimSpace(parts[0])
		if email == "" {
			continue
		}

		contact := Contact{Email: email}
		if len(parts) > 1 {
			contact.FirstName = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			contact.LastName = strings.TrimSpace(parts[2])
		}
		contacts = append(contacts, contact)
	}

	return contacts
}
