package api

// Service accessors group Client methods by Emarsys resource.
// Each service embeds *Client.

type ConditionsService struct{ *Client }

type ContactsService struct{ *Client }

type ContactListsService struct{ *Client }

type EmailsService struct{ *Client }

type EventsService struct{ *Client }

type ExportsService struct{ *Client }

type FieldsService struct{ *Client }

type FilesService struct{ *Client }

type FoldersService struct{ *Client }

type FormsService struct{ *Client }

type LanguagesService struct{ *Client }

type SegmentsService struct{ *Client }

type SourcesService struct{ *Client }

func (c *Client) Conditions() ConditionsService {
	return ConditionsService{c}
}

func (c *Client) Contacts() ContactsService {
	return ContactsService{c}
}

func (c *Client) ContactLists() ContactListsService {
	return ContactListsService{c}
}

func (c *Client) Emails() EmailsService {
	return EmailsService{c}
}

func (c *Client) Events() EventsService {
	return EventsService{c}
}

func (c *Client) Exports() ExportsService {
	return ExportsService{c}
}

func (c *Client) Fields() FieldsService {
	return FieldsService{c}
}

func (c *Client) Files() FilesService {
	return FilesService{c}
}

func (c *Client) Folders() FoldersService {
	return FoldersService{c}
}

func (c *Client) Forms() FormsService {
	return FormsService{c}
}

func (c *Client) Languages() LanguagesService {
	return LanguagesService{c}
}

func (c *Client) Segments() SegmentsService {
	return SegmentsService{c}
}

func (c *Client) Sources() SourcesService {
	return SourcesService{c}
}
