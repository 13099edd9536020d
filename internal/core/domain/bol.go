package domain

// BOLTargetFields is the hard-coded bill-of-lading schema the extraction prompt asks for.
var BOLTargetFields = []string{
	"BOL Number",
	"Carrier Name",
	"Shipper Name",
	"Consignee Name",
	"Notify Party",
	"Port of Loading",
	"Port of Discharge",
	"Vessel Name",
	"Date of Issue",
	"Description of Goods",
	"Freight Class",
	"Declared Value",
	"Hazardous Material Information",
	"Signature",
}

// BOLFieldDescriptions is appended verbatim to the prompt as hints for the model.
const BOLFieldDescriptions = `
- BOL Number: Unique identifier for the Bill of Lading.
- Carrier Name: Shipping or trucking company transporting the goods.
- Shipper Name: Name/address of the sender.
- Consignee Name: Name/address of the receiver.
- Notify Party: Contact to be informed on arrival, if different from consignee.
- Port of Loading: Where cargo is loaded.
- Port of Discharge: Where cargo is unloaded.
- Vessel Name: Name of the ship or vehicle.
- Date of Issue: Creation date of the document.
- Description of Goods: Contents, quantity, weight, packaging.
- Freight Class: Shipping classification.
- Declared Value: Insurance value of goods.
- Hazardous Material Information: Hazmat status.
- Signature: Set to "Signed" if a signature is found; omit if not found.
`
