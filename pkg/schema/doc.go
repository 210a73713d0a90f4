// Package schema loads form definitions. Documents come from a file, an
// fs.FS entry or a URL; they are decoded from YAML or JSON, or derived from
// the request body of an OpenAPI 3 operation.
//
// The document format lists fields inline per step so step membership and
// field order are explicit:
//
//	id: workshop
//	title: Workshop registration
//	sync:
//	  required: [name]
//	  anyOf: [email, phone]
//	steps:
//	  - id: contact
//	    title: Contact details
//	    fields:
//	      - id: name
//	        kind: text
//	        required: true
//	      - id: email
//	        kind: text
//	        validations:
//	          - kind: pattern
//	            params: {pattern: '^[^@\s]+@[^@\s]+$'}
package schema
