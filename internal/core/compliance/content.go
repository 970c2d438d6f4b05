package compliance

import (
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	disclaimerGeneral      = "This analysis is provided for educational and informational purposes only and is not legal advice."
	disclaimerRelationship = "Using this service does not create an attorney-client relationship. Communications with this system are not privileged."
	disclaimerJurisdiction = "Laws and court procedures vary by jurisdiction. Information here may not apply to your state, district or court."
	disclaimerAccuracy     = "Text was extracted automatically and may contain recognition or classification errors. Verify every date, name and number against the original document."
	disclaimerSeekCounsel  = "For advice about your specific situation, consult a licensed attorney in your jurisdiction."
)

// Disclaimers is the fixed bundle attached to every analysis. It never
// depends on the outcome.
func Disclaimers() domain.DisclaimerBundle {
	return domain.DisclaimerBundle{
		General:                      disclaimerGeneral,
		NoAttorneyClientRelationship: disclaimerRelationship,
		Jurisdiction:                 disclaimerJurisdiction,
		Accuracy:                     disclaimerAccuracy,
		SeekCounsel:                  disclaimerSeekCounsel,
	}
}

var purposeByType = map[domain.DocumentType]string{
	domain.DocMotion:         "A motion asks the court to make a specific ruling or take a specific action in a pending case.",
	domain.DocPetition:       "A petition formally asks a court to begin a proceeding or grant relief, for example opening a bankruptcy case.",
	domain.DocOrder:          "An order is a court's written decision directing what must or must not happen in a case.",
	domain.DocComplaint:      "A complaint starts a civil lawsuit by stating the facts and legal claims against the other side.",
	domain.DocAnswer:         "An answer is the defendant's written response to a complaint, admitting or denying each allegation.",
	domain.DocBrief:          "A brief presents written legal argument and authorities supporting a party's position.",
	domain.DocContract:       "A contract records the terms the parties agreed to and the obligations each one accepted.",
	domain.DocCorrespondence: "Correspondence is a letter or message exchanged between parties, counsel or the court.",
	domain.DocFinancial:      "A financial document lists income, expenses, assets or debts, often as a required court schedule.",
	domain.DocProcedural:     "A procedural document handles case logistics such as notices, scheduling or service of papers.",
	domain.DocUnknown:        "The document type could not be determined with confidence from its text.",
}

var contextBySubject = map[domain.SubjectCategory]string{
	domain.SubjectBankruptcy:     "Bankruptcy cases are governed by Title 11 of the United States Code and the Federal Rules of Bankruptcy Procedure.",
	domain.SubjectCivil:          "Civil litigation follows procedural rules covering pleadings, discovery, motions and trial.",
	domain.SubjectContract:       "Contract disputes turn on formation, the agreed terms, performance and remedies for breach.",
	domain.SubjectFamily:         "Family law matters are decided in state courts and vary significantly from state to state.",
	domain.SubjectCriminal:       "Criminal proceedings are brought by the government and carry constitutional protections for the accused.",
	domain.SubjectEmployment:     "Employment matters can involve federal statutes, state law and agency complaint procedures.",
	domain.SubjectRealEstate:     "Real estate matters involve property rights, recorded instruments and often local procedure.",
	domain.SubjectIP:             "Intellectual property rights arise mostly under federal patent, trademark and copyright law.",
	domain.SubjectGeneral:        "General legal documents follow the procedural rules of the court or agency where they are filed.",
	domain.SubjectAdministrative: "Administrative matters proceed before government agencies, usually with their own hearing rules.",
}

var objectivesBySubject = map[domain.SubjectCategory][]string{
	domain.SubjectBankruptcy: {
		"Understand the difference between liquidation and reorganization chapters",
		"Recognize the role of the trustee and the automatic stay",
	},
	domain.SubjectCivil: {
		"Understand how a civil case moves from pleadings to judgment",
		"Recognize common pretrial motions and their purpose",
	},
	domain.SubjectContract: {
		"Identify the elements of an enforceable contract",
		"Understand what counts as a breach and the usual remedies",
	},
	domain.SubjectFamily: {
		"Understand how courts approach custody and support",
	},
	domain.SubjectCriminal: {
		"Understand the stages of a criminal case",
	},
	domain.SubjectEmployment: {
		"Understand the main sources of employee protections",
	},
	domain.SubjectRealEstate: {
		"Understand the rights and duties of owners, landlords and tenants",
	},
	domain.SubjectIP: {
		"Distinguish patents, trademarks and copyrights",
	},
	domain.SubjectAdministrative: {
		"Understand how agency decisions are made and reviewed",
	},
}

var roleContext = map[string]string{
	"plaintiff":  "A plaintiff is the party who starts a civil lawsuit.",
	"defendant":  "A defendant is the party the lawsuit or charge is brought against.",
	"petitioner": "A petitioner is the party who files a petition asking the court for relief.",
	"respondent": "A respondent is the party who answers a petition or appeal.",
	"debtor":     "A debtor is the person or business whose debts are being addressed in a bankruptcy case.",
	"creditor":   "A creditor is a party owed money by the debtor.",
	"appellant":  "An appellant asks a higher court to review a lower court's decision.",
	"appellee":   "An appellee defends the lower court's decision on appeal.",
}

var dateContext = map[domain.DateKind]string{
	domain.DateFiling:   "Filing dates establish when documents were officially submitted to the court.",
	domain.DateHearing:  "Hearing dates mark when the court is scheduled to hear argument or evidence.",
	domain.DateDeadline: "Deadlines set the last day a required action can be taken; missing one can have serious consequences.",
	domain.DateDocument: "This date appears in the document; its significance depends on the surrounding text.",
}

const pastDateClause = " This date has passed; for educational reference only."

func contextForParty(p domain.ExtractedParty) string {
	if text, ok := roleContext[p.Role]; ok {
		return text
	}
	return fmt.Sprintf("%s is named in the document; the role could not be determined.", p.Name)
}
