/*
Package yaml loads trees declared in YAML documents.

A document names the tree and lists its nodes:

	name: checkout
	description: Charges valid orders.
	tree:
	  - validate
	  - paths:
	      success:
	        - charge
	        - when: "total > 100"
	        - paths:
	            "true": [{ set: { key: tier, value: gold } }]
	            "false": []
	      error: [notify]

A node is one of:

  - a string naming a function of the registry
  - a list, spliced in place as a sequence
  - {paths: {name: [nodes]}} declaring the branches of the preceding step
  - {sequence: [nodes]}
  - {when: expression}, {equals: key}, {set: {key, value}}, {wait: duration}
  - {run: tree} running another tree of the same loader and merging its payload

Operator nodes accept an optional "name" that overrides the function name
reported in events.
*/
package yaml
